// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseVersionBanner(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
		ok     bool
	}{
		{
			"modern openjdk",
			"openjdk version \"17.0.9\" 2023-10-17\nOpenJDK Runtime Environment Temurin-17.0.9+9\n",
			"17.0.9", true,
		},
		{
			"legacy oracle",
			"java version \"1.8.0_392\"\nJava(TM) SE Runtime Environment\n",
			"1.8.0_392", true,
		},
		{
			"settings dump before banner",
			"Property settings:\n    os.arch = amd64\nopenjdk version \"21.0.2\" 2024-01-16\n",
			"21.0.2", true,
		},
		{"no quotes", "command not found\n", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseVersionBanner(tc.output)
			if got != tc.want || ok != tc.ok {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestParseMajorVersion(t *testing.T) {
	tests := []struct {
		version string
		want    int
	}{
		{"17.0.9", 17},
		{"21", 21},
		{"21.0.2", 21},
		{"1.8.0_392", 8},
		{"1.8", 8},
		{"9.0.4", 9},
		{"garbage", 0},
		{"", 0},
	}
	for _, tc := range tests {
		if got := ParseMajorVersion(tc.version); got != tc.want {
			t.Errorf("ParseMajorVersion(%q) = %d, want %d", tc.version, got, tc.want)
		}
	}
}

func TestIs64BitBanner(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"data model", "    sun.arch.data.model = 64\n", true},
		{"amd64", "    os.arch = amd64\n", true},
		{"aarch64", "    os.arch = aarch64\n", true},
		{"x86_64", "    os.arch = x86_64\n", true},
		{"32-bit", "    sun.arch.data.model = 32\n    os.arch = i386\n", false},
		{"no properties", "openjdk version \"17.0.9\"\n", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := is64BitBanner(tc.output); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSatisfies(t *testing.T) {
	inst := &Installation{Major: 17, SixtyFourBit: true}
	if !inst.Satisfies(Requirement{MinMajor: 17}) {
		t.Error("equal major should satisfy")
	}
	if !inst.Satisfies(Requirement{MinMajor: 8}) {
		t.Error("higher major should satisfy a lower requirement")
	}
	if inst.Satisfies(Requirement{MinMajor: 21}) {
		t.Error("lower major must not satisfy")
	}
	inst.SixtyFourBit = false
	if inst.Satisfies(Requirement{MinMajor: 8}) {
		t.Error("32-bit build must not satisfy")
	}
}

func TestProbeFakeRuntime(t *testing.T) {
	requireUnix(t)
	exePath := writeFakeJava(t, t.TempDir(), "17.0.9", true)

	v := &Validator{}
	inst, err := v.Probe(context.Background(), exePath)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if inst.Version != "17.0.9" || inst.Major != 17 || !inst.SixtyFourBit {
		t.Errorf("got %+v", inst)
	}
	if inst.Vendor != "Temurin" {
		t.Errorf("vendor = %q, want Temurin", inst.Vendor)
	}
}

func TestValidateRejectsLowMajor(t *testing.T) {
	requireUnix(t)
	exePath := writeFakeJava(t, t.TempDir(), "8.0.392", true)

	v := &Validator{}
	if _, err := v.Validate(context.Background(), exePath, Requirement{MinMajor: 17}); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("got %v, want ErrValidationFailed", err)
	}
}

func TestValidateRejects32Bit(t *testing.T) {
	requireUnix(t)
	exePath := writeFakeJava(t, t.TempDir(), "17.0.9", false)

	v := &Validator{}
	if _, err := v.Validate(context.Background(), exePath, Requirement{MinMajor: 8}); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("got %v, want ErrValidationFailed", err)
	}
}

func TestProbeMissingExecutable(t *testing.T) {
	v := &Validator{}
	_, err := v.Probe(context.Background(), filepath.Join(t.TempDir(), "java"))
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("got %v, want ErrValidationFailed", err)
	}
}

func TestProbeTimeout(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	exePath := filepath.Join(dir, "java")
	if err := os.WriteFile(exePath, []byte("#!/bin/sh\nsleep 60\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	v := &Validator{Timeout: 200 * time.Millisecond}
	if _, err := v.Probe(context.Background(), exePath); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("got %v, want ErrValidationFailed", err)
	}
}
