package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel("info")
	})

	SetLevel("info")
	Debugf("不应出现 %d", 1)
	Infof("应出现 %s", "info")
	Warnf("应出现 %s", "warn")

	out := buf.String()
	assert.NotContains(t, out, "不应出现")
	assert.Contains(t, out, "应出现 info")
	assert.Contains(t, out, "应出现 warn")

	buf.Reset()
	SetLevel("debug")
	Debugf("调试 %d", 2)
	assert.Contains(t, buf.String(), "调试 2")
}

func TestSetLevelUnknownFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel("info")
	})

	SetLevel("nonsense")
	Debugf("静默")
	Errorf("错误可见")

	lines := strings.TrimSpace(buf.String())
	assert.NotContains(t, lines, "静默")
	assert.Contains(t, lines, "错误可见")
}
