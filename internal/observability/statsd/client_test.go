package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"console", "job.transition", "console.job.transition"},
		{"", " job/metric ", "job_metric"},
		{"console", "foo..bar", "console.foo.bar"},
		{"console", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, metricName(tt.prefix, tt.name), tt.name)
	}
}

func TestClient_Line(t *testing.T) {
	c, err := NewClient(Config{Prefix: ".console.", GlobalTags: map[string]string{"env": "prod", " ": "x"}})
	require.NoError(t, err)

	got := c.line("job.transition", "1", "c", map[string]string{"result": " success ", "env": "stage"})
	assert.Equal(t, "console.job.transition:1|c|#env:stage,result:success", got)
	assert.Equal(t, "console.x:2|ms", (&Client{prefix: "console"}).line("x", "2", "ms", nil))
}

func TestClient_DisabledIsNoop(t *testing.T) {
	c, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:8125"})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	c.Count("x", 1, nil)
	require.NoError(t, c.Close())

	var nilClient *Client
	assert.NotPanics(t, func() { nilClient.Count("x", 1, nil) })
	assert.False(t, nilClient.Enabled())
}

func TestClient_SendsDatagrams(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := NewClient(Config{Enabled: true, Address: pc.LocalAddr().String(), Prefix: "console"})
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.Enabled())

	c.Count("job.transition", 1, map[string]string{"job_type": "noop"})
	c.Timing("job.duration", 1500*time.Microsecond, nil)

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "console.job.transition:1|c|#job_type:noop", string(buf[:n]))

	n, _, err = pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "console.job.duration:1.5|ms", string(buf[:n]))
}
