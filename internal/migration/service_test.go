package migration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testHeaders() []string {
	return []string{
		"Fecha", "Marca", "Modelo", "Patente", "Origen", "Destino",
		"RUT Cliente", "Patente Grúa", "Operador", "Tipo Servicio", "Valor",
	}
}

func TestServiceAnalyzeImport(t *testing.T) {
	svc := NewService(testDirectory(), &fakeCreator{}, nil)

	t.Run("clean file can process", func(t *testing.T) {
		rep, err := svc.AnalyzeImport(context.Background(), testHeaders(), []RawRow{validTestRow()})
		if err != nil {
			t.Fatalf("AnalyzeImport: %v", err)
		}
		if !rep.CanProcess {
			t.Errorf("report = %+v", rep)
		}
		if rep.TotalRows != 1 || rep.ErrorCount != 0 {
			t.Errorf("report = %+v", rep)
		}
	})

	t.Run("missing columns reported without row findings", func(t *testing.T) {
		rep, err := svc.AnalyzeImport(context.Background(), []string{"Fecha", "Marca"}, []RawRow{validTestRow()})
		if err != nil {
			t.Fatalf("AnalyzeImport: %v", err)
		}
		if rep.CanProcess {
			t.Error("CanProcess true with missing columns")
		}
		if len(rep.MissingColumns) == 0 {
			t.Error("MissingColumns empty")
		}
		if len(rep.Findings) != 0 {
			t.Errorf("row findings produced despite missing columns: %+v", rep.Findings)
		}
	})

	t.Run("field errors counted", func(t *testing.T) {
		row := validTestRow()
		row["RUT Cliente"] = "12.345.678-6"
		rep, err := svc.AnalyzeImport(context.Background(), testHeaders(), []RawRow{row})
		if err != nil {
			t.Fatalf("AnalyzeImport: %v", err)
		}
		if rep.ErrorCount != 1 || rep.CanProcess {
			t.Errorf("report = %+v", rep)
		}
	})
}

func TestServiceImportLifecycle(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewService(testDirectory(), creator, nil)

	rows := []RawRow{validTestRow(), validTestRow()}
	bad := validTestRow()
	bad["Operador"] = "nadie conocido"
	rows = append(rows, bad)

	batchID, err := svc.StartImport(context.Background(), "marzo.csv", testHeaders(), rows)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}

	ch, err := svc.SubscribeProgress(batchID)
	if err != nil {
		t.Fatalf("SubscribeProgress: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := svc.GetResult(ctx, batchID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if result.BatchID != batchID || result.FileName != "marzo.csv" {
		t.Errorf("result = %+v", result)
	}
	if result.TotalRows != 3 || result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("result = %+v", result)
	}
	if !strings.HasPrefix(result.Outcomes[2].Error, "row 3: ") {
		t.Errorf("outcome = %+v", result.Outcomes[2])
	}
	if len(creator.created) != 2 {
		t.Errorf("created = %d records", len(creator.created))
	}

	// subscription channel drains and closes after completion
	sawFinished := false
	for p := range ch {
		if p.Finished {
			sawFinished = true
		}
	}
	if !sawFinished {
		t.Log("finished snapshot dropped by slow-listener policy")
	}

	prog, err := svc.GetProgress(batchID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if !prog.Finished || prog.Percent != 100 {
		t.Errorf("progress = %+v", prog)
	}
}

func TestServiceUnknownBatch(t *testing.T) {
	svc := NewService(testDirectory(), &fakeCreator{}, nil)

	if _, err := svc.SubscribeProgress("nope"); err == nil {
		t.Error("SubscribeProgress accepted unknown batch")
	}
	if _, err := svc.GetProgress("nope"); err == nil {
		t.Error("GetProgress accepted unknown batch")
	}
	if _, err := svc.GetResult(context.Background(), "nope"); err == nil {
		t.Error("GetResult accepted unknown batch")
	}
}

func TestServiceStartImportRejectsBadHeaders(t *testing.T) {
	svc := NewService(testDirectory(), &fakeCreator{}, nil)
	_, err := svc.StartImport(context.Background(), "malo.csv", []string{"Fecha"}, []RawRow{validTestRow()})
	if err == nil {
		t.Fatal("expected missing-columns error")
	}
}

func TestServiceStartImportBlocksErrorFindings(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewService(testDirectory(), creator, nil)

	bad := validTestRow()
	bad["Fecha"] = "no es fecha"
	rows := []RawRow{validTestRow(), bad}

	_, err := svc.StartImport(context.Background(), "errores.csv", testHeaders(), rows)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if ve.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", ve.ErrorCount)
	}
	if len(creator.created) != 0 {
		t.Errorf("created = %d records, want none from a refused batch", len(creator.created))
	}
}

func TestServiceSubscribeAfterFinish(t *testing.T) {
	svc := NewService(testDirectory(), &fakeCreator{}, nil)

	batchID, err := svc.StartImport(context.Background(), "tarde.csv", testHeaders(), []RawRow{validTestRow()})
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := svc.GetResult(ctx, batchID); err != nil {
		t.Fatalf("GetResult: %v", err)
	}

	ch, err := svc.SubscribeProgress(batchID)
	if err != nil {
		t.Fatalf("SubscribeProgress: %v", err)
	}

	var last Progress
	drained := make(chan struct{})
	go func() {
		for p := range ch {
			last = p
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel never closed after completion")
	}
	if !last.Finished || last.Percent != 100 {
		t.Errorf("final snapshot = %+v", last)
	}
}
