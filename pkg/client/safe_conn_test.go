package client

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aeolun/queueview/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overlapTransport fails the test if two writes overlap
type overlapTransport struct {
	*fakeTransport
	writing atomic.Int32
	overlap atomic.Bool
	count   atomic.Int32
}

func (o *overlapTransport) WriteMessage(messageType int, data []byte) error {
	if o.writing.Add(1) > 1 {
		o.overlap.Store(true)
	}
	time.Sleep(100 * time.Microsecond)
	o.count.Add(1)
	o.writing.Add(-1)
	return nil
}

func TestSafeConnSerializesWrites(t *testing.T) {
	tr := &overlapTransport{fakeTransport: newFakeTransport()}
	sc := NewSafeConn(tr)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sc.WriteAction(protocol.Remove("m1")))
		}()
	}
	wg.Wait()

	assert.False(t, tr.overlap.Load(), "writes overlapped")
	assert.Equal(t, int32(20), tr.count.Load())
}

func TestSafeConnReadAndClose(t *testing.T) {
	tr := newFakeTransport()
	sc := NewSafeConn(tr)

	tr.frames <- []byte(`{"action":"del","id":"m1"}`)
	data, err := sc.ReadFrame()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"del","id":"m1"}`, string(data))

	require.NoError(t, sc.Close())
	_, err = sc.ReadFrame()
	assert.Error(t, err)
	assert.Error(t, sc.WriteBytes([]byte(`{}`)))
}

func TestSafeConnRejectsNilAction(t *testing.T) {
	tr := newFakeTransport()
	sc := NewSafeConn(tr)
	assert.Error(t, sc.WriteAction(nil))
	assert.Empty(t, tr.written)
}
