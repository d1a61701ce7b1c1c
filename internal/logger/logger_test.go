package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("production writes json at info", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, false)

		l.Debug("hidden")
		l.Info("deposit committed", "account_number", "1460676351")

		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "deposit committed", record["msg"])
		assert.Equal(t, "1460676351", record["account_number"])
	})

	t.Run("development writes text at debug", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, true)

		l.Debug("retrying", "attempt", 2)

		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "attempt=2")
	})
}
