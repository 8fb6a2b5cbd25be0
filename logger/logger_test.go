package logger

import (
	"fmt"
	"testing"

	"github.com/gameshub/uvlhub/config"
	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
)

func TestGetLogsFiltersByLevel(t *testing.T) {
	Info("info line")
	Warning("warning line")
	Error("error line")

	logs := GetLogs(10, "WARNING")
	assert.NotEmpty(t, logs)
	assert.Contains(t, logs[0], "error line")
	for _, l := range logs {
		assert.NotContains(t, l, "info line")
	}

	assert.Len(t, GetLogs(1, "DEBUG"), 1)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(config.Warn)
	assert.NoError(t, err)
	assert.Equal(t, logging.WARNING, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestBufferWrapsAround(t *testing.T) {
	for i := 0; i < maxLogBufferSize+5; i++ {
		Debugf("line %d", i)
	}
	logs := GetLogs(2, "DEBUG")
	assert.Len(t, logs, 2)
	assert.Contains(t, logs[0], fmt.Sprintf("line %d", maxLogBufferSize+4))
	assert.Contains(t, logs[1], fmt.Sprintf("line %d", maxLogBufferSize+3))
}
