package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"summarist/internal/domain"
)

func TestErrorMatchesByKind(t *testing.T) {
	item := domain.Item{ID: "acme/api#1", Origin: "acme/api"}
	err := fmt.Errorf("run: %w",
		domain.NewError(domain.KindFetch, domain.PhaseDetail, &item, errors.New("connection reset")))

	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected %v to match ErrFetch", err)
	}
	if errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("did not expect %v to match ErrAuthentication", err)
	}

	want := "run: FetchError (detail acme/api#1): connection reset"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestAsFailure(t *testing.T) {
	if domain.AsFailure(nil) != nil {
		t.Fatal("expected nil failure for nil error")
	}

	f := domain.AsFailure(domain.NewError(domain.KindSummarization, domain.PhaseSummarize, nil, errors.New("quota")))
	if f.Kind != "SummarizationError" || f.Phase != "summarize" {
		t.Fatalf("unexpected failure: %+v", f)
	}

	f = domain.AsFailure(errors.New("plain"))
	if f.Kind != "UnknownError" || f.Message != "plain" {
		t.Fatalf("unexpected failure: %+v", f)
	}
}
