package models_test

import (
	"testing"

	"scribe/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    models.ID
		wantErr bool
	}{
		{"tiny", models.Tiny, false},
		{" Base ", models.Base, false},
		{"large", models.LargeV2, false},
		{"large-v2", models.LargeV2, false},
		{"huge", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := models.Parse(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestAllIsOrderedAndCopied(t *testing.T) {
	all := models.All()
	if len(all) != 5 || all[0].ID != models.Tiny || all[4].ID != models.LargeV2 {
		t.Fatalf("unexpected catalogue order: %+v", all)
	}
	all[0].Description = "mutated"
	if info, _ := models.Lookup(models.Tiny); info.Description == "mutated" {
		t.Fatal("All must return a copy")
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		size        float64
		accelerated bool
		want        models.ID
	}{
		{5, false, models.Base},
		{20, false, models.Small},
		{120, false, models.Base},
		{2, true, models.Small},
		{10, true, models.Medium},
		{100, true, models.LargeV2},
	}
	for _, tt := range tests {
		if got := models.Recommend(tt.size, tt.accelerated); got != tt.want {
			t.Errorf("Recommend(%v, %v) = %q, want %q", tt.size, tt.accelerated, got, tt.want)
		}
	}
}
