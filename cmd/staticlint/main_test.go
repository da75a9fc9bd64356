package main

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestOsExitAnalyzer(t *testing.T) {
	analysistest.Run(t, analysistest.TestData(), OsExitAnalyzer, "exits", "lib")
}

func TestAnalyzers(t *testing.T) {
	names := map[string]bool{}
	for _, a := range analyzers() {
		if names[a.Name] {
			t.Fatalf("analyzer %s registered twice", a.Name)
		}
		names[a.Name] = true
	}

	for _, want := range []string{"printf", "SA1000", "ST1005", "QF1001", "osexitlint"} {
		if !names[want] {
			t.Errorf("analyzer %s missing", want)
		}
	}
}
