package split_test

import (
	"context"
	"errors"
	"testing"

	"dupetag/internal/catalog"
	"dupetag/internal/logging"
	"dupetag/internal/split"
	"dupetag/internal/testsupport"
)

func oshash(v string) catalog.Fingerprint { return catalog.Fingerprint{Type: "oshash", Value: v} }

func TestRunSplitsExtraFiles(t *testing.T) {
	cat := testsupport.NewCatalog()
	cat.AddScenes(testsupport.RawScene(1,
		testsupport.WithTitle("Merged"),
		testsupport.WithFingerprint("oshash", "abc"),
		testsupport.WithExtraFile(testsupport.RawFile("f1b", oshash("abc"))),
		testsupport.WithExtraFile(testsupport.RawFile("f1c", oshash("abc"))),
	))

	summary, err := split.New(cat, split.Options{Logger: logging.NewNop()}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Fingerprints != 1 || summary.ScenesCreated != 2 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	original, _ := cat.Scene("1")
	if len(original.Files) != 1 || original.Files[0].ID != "f1" {
		t.Fatalf("original files = %+v", original.Files)
	}
	for _, id := range summary.CreatedIDs {
		s, ok := cat.Scene(id)
		if !ok {
			t.Fatalf("created scene %s missing", id)
		}
		if s.Title != "Merged" || len(s.Files) != 1 {
			t.Fatalf("created scene = %+v", s)
		}
	}
}

func TestRunSkipsIgnoredAndUnrelatedFiles(t *testing.T) {
	cat := testsupport.NewCatalog()
	ignore := cat.AddTag("[Dupe: Ignore]")
	cat.AddScenes(
		testsupport.RawScene(1,
			testsupport.WithTags(ignore),
			testsupport.WithFingerprint("oshash", "abc"),
			testsupport.WithExtraFile(testsupport.RawFile("f1b", oshash("abc"))),
		),
		testsupport.RawScene(2,
			testsupport.WithFingerprint("oshash", "def"),
			testsupport.WithExtraFile(testsupport.RawFile("f2b", oshash("zzz"))),
			testsupport.WithExtraFile(testsupport.RawFile("f2c", oshash("def"))),
		),
	)

	summary, err := split.New(cat, split.Options{IgnoreTagID: ignore}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.ScenesCreated != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	s, _ := cat.Scene(summary.CreatedIDs[0])
	if s.Files[0].ID != "f2c" {
		t.Fatalf("split wrong file: %+v", s.Files)
	}
	if ignored, _ := cat.Scene("1"); len(ignored.Files) != 2 {
		t.Fatal("ignored scene was split")
	}
	// The file with a different oshash stays with the original scene.
	kept, _ := cat.Scene("2")
	if len(kept.Files) != 2 || kept.Files[0].ID != "f2" || kept.Files[1].ID != "f2b" {
		t.Fatalf("original scene files = %+v", kept.Files)
	}
}

func TestRunContinuesAfterFingerprintFailure(t *testing.T) {
	cat := testsupport.NewCatalog()
	cat.AddScenes(
		testsupport.RawScene(1,
			testsupport.WithFingerprint("oshash", "aaa"),
			testsupport.WithExtraFile(testsupport.RawFile("f1b", oshash("aaa"))),
		),
		testsupport.RawScene(2,
			testsupport.WithFingerprint("oshash", "bbb"),
			testsupport.WithExtraFile(testsupport.RawFile("f2b", oshash("bbb"))),
		),
	)
	cat.Fail = func(op string, ids []string) error {
		if op == "createScene" && ids[0] == "f1b" {
			return errors.New("boom")
		}
		return nil
	}

	summary, err := split.New(cat, split.Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.ScenesCreated != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunReportQueryFailureIsFatal(t *testing.T) {
	cat := testsupport.NewCatalog()
	cat.Fail = func(op string, _ []string) error {
		if op == "rawQuery" {
			return errors.New("denied")
		}
		return nil
	}
	if _, err := split.New(cat, split.Options{}).Run(context.Background()); !errors.Is(err, catalog.ErrCatalog) {
		t.Fatalf("expected catalog error, got %v", err)
	}
}
