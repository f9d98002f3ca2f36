/*
Package setting reads and writes firmware (BIOS/UEFI) setup questions
through an external vendor tool, and classifies them into the keyword
buckets the Tuning Engine searches over.
*/
package setting

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Category buckets a setting by keyword match on its name.
type Category string

const (
	CategoryCPUPower    Category = "cpu_power"
	CategoryCPUFreq     Category = "cpu_freq"
	CategoryCPUVoltage  Category = "cpu_voltage"
	CategoryMemory      Category = "memory"
	CategoryCPUFeatures Category = "cpu_features"
	CategoryOther       Category = "other"
)

// DeclaredType is the parsed shape of a setting's Value field.
type DeclaredType string

const (
	TypeBool   DeclaredType = "bool"
	TypeInt    DeclaredType = "int"
	TypeHex    DeclaredType = "hex"
	TypeFloat  DeclaredType = "float"
	TypeString DeclaredType = "string"
)

// Setting is one firmware setup question as read from the vendor dump.
type Setting struct {
	Name               string       `json:"name"`
	Value              Value        `json:"value"`
	DeclaredType       DeclaredType `json:"declared_type"`
	Category           Category     `json:"category"`
	PerformanceRelated bool         `json:"performance_related"`
	RebootRequired     bool         `json:"reboot_required"`
	Token              string       `json:"token,omitempty"`
	Offset             string       `json:"offset,omitempty"`
	Width              string       `json:"width,omitempty"`
	Default            string       `json:"default,omitempty"`
}
