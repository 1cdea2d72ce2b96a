package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordLoopRun("files", 5*time.Millisecond, nil)
	RecordLoopRun("files", time.Millisecond, errors.New("boom"))
	RecordReconcileUpdate("source", "modified")
	RecordCheckpoint(128, nil)
	RecordConversion(time.Second, nil)
	SetOpenTabs(3)
	SetLicenseActive(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`sqlstudio_loop_runs_total{loop="files",status="ok"}`,
		`sqlstudio_loop_runs_total{loop="files",status="error"}`,
		`sqlstudio_reconcile_updates_total{action="modified",side="source"}`,
		`sqlstudio_open_tabs 3`,
		`sqlstudio_license_active 1`,
		`sqlstudio_checkpoint_bytes 128`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
