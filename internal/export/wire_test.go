package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

func TestEncodeDecode(t *testing.T) {
	e := event.New(event.MonitorWait, "n1")
	defer e.Release()
	e.Timestamp = time.UnixMicro(1_700_000_000_123_456)
	e.ThreadName = "worker"
	e.SetNumeric(constants.KeyTimeoutSec, 1.5)

	data, err := Encoder{Instance: "i-1"}.Encode(e)
	require.NoError(t, err)

	r, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "monitor_wait", r.Kind)
	assert.Equal(t, "i-1", r.Instance)
	assert.Equal(t, "worker", r.Thread)
	assert.Equal(t, 1.5, r.Numerics[constants.KeyTimeoutSec])
	assert.True(t, r.Time().Equal(e.Timestamp))
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"breakpoint_hit"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
