// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package validation

import (
	"strings"
	"testing"
)

type historyQuery struct {
	Limit int `validate:"min=1,max=500"`
}

type seedModeArg struct {
	Mode string `validate:"omitempty,oneof=auto import export prep"`
}

func TestValidateStructPasses(t *testing.T) {
	if err := ValidateStruct(&historyQuery{Limit: 20}); err != nil {
		t.Errorf("ValidateStruct() = %v, want nil", err)
	}
	if err := ValidateStruct(&seedModeArg{Mode: "import"}); err != nil {
		t.Errorf("ValidateStruct() = %v, want nil", err)
	}
	if err := ValidateStruct(&seedModeArg{}); err != nil {
		t.Errorf("ValidateStruct() = %v for empty optional field, want nil", err)
	}
}

func TestValidateStructLimitBounds(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  string
	}{
		{"below minimum", 0, "Limit must be at least 1"},
		{"above maximum", 501, "Limit must be at most 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&historyQuery{Limit: tt.limit})
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidateStructOneof(t *testing.T) {
	err := ValidateStruct(&seedModeArg{Mode: "yolo"})
	if err == nil {
		t.Fatal("ValidateStruct() = nil for bad mode, want error")
	}
	if !strings.Contains(err.Error(), "must be one of: auto, import, export, prep") {
		t.Errorf("Error() = %q, want the allowed modes listed", err.Error())
	}
	if len(err.Fields) != 1 || err.Fields[0].Tag != "oneof" {
		t.Errorf("Fields = %+v, want a single oneof failure", err.Fields)
	}
}

func TestValidatorSingleton(t *testing.T) {
	if Validator() != Validator() {
		t.Error("Validator() returned distinct instances")
	}
}
