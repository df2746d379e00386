package prof

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStageRecordsAndPropagates(t *testing.T) {
	SnapshotAndReset()
	boom := errors.New("boom")
	if err := Stage("verify/dot", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Stage lost error: %v", err)
	}
	_ = Stage("verify/compare", func() error { return nil })
	got := SnapshotAndReset()
	if len(got) != 2 || got[0].Label != "verify/dot" || got[1].Label != "verify/compare" {
		t.Fatalf("unexpected entries %+v", got)
	}
	if len(SnapshotAndReset()) != 0 {
		t.Fatalf("snapshot did not reset")
	}
}

func TestSummarizeFoldsLabels(t *testing.T) {
	in := []Entry{
		{Label: "session/prove", Dur: 2 * time.Millisecond, Calls: 1},
		{Label: "session/verify", Dur: time.Millisecond, Calls: 1},
		{Label: "session/prove", Dur: 3 * time.Millisecond, Calls: 1},
	}
	sum := Summarize(in)
	if len(sum) != 2 {
		t.Fatalf("want 2 groups, got %+v", sum)
	}
	if sum[0].Label != "session/prove" || sum[0].Dur != 5*time.Millisecond || sum[0].Calls != 2 {
		t.Fatalf("prove group %+v", sum[0])
	}
	var buf bytes.Buffer
	Print(&buf, in)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "(2 calls)") || !strings.Contains(lines[1], "session/verify") {
		t.Fatalf("Print output %q", buf.String())
	}
}
