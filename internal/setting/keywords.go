package setting

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Keyword tables are plain case-insensitive substring matches on a
// setting's name; mapset.Set[string] holds each bucket so the tables read
// as data rather than nested if/else chains. Matching iterates a set's
// members and checks each phrase for containment in the name.

var performanceKeywords = mapset.NewSet(
	"cpu", "power", "limit", "ratio", "turbo", "boost", "overclock", "xmp", "docp",
	"performance", "frequency", "clock", "c-state", "voltage", "vcore", "offset",
	"c-states", "multiplier", "tdp", "pl1", "pl2", "ppt", "tdc", "edc", "smt",
	"hyper-threading", "threading", "avx", "memory", "dram", "timing", "speed",
	"bclk", "base clock", "intel speed step", "speedstep", "coolnquiet", "cool n quiet",
)

var rebootRequiredKeywords = mapset.NewSet(
	"memory", "xmp", "docp", "bclk", "base clock", "smt", "hyper-threading",
)

var categoryKeywords = map[Category]mapset.Set[string]{
	CategoryCPUPower:    mapset.NewSet("power limit", "pl1", "pl2", "ppt", "tdc", "edc", "tdp"),
	CategoryCPUFreq:     mapset.NewSet("ratio", "multiplier", "turbo", "boost", "frequency", "clock", "bclk"),
	CategoryCPUVoltage:  mapset.NewSet("voltage", "vcore", "offset", "vid"),
	CategoryMemory:      mapset.NewSet("memory", "dram", "ram", "xmp", "docp", "timing"),
	CategoryCPUFeatures: mapset.NewSet("c-state", "hyper", "threading", "smt", "avx", "speedstep", "coolnquiet"),
}

// categoryOrder fixes iteration order over categoryKeywords: the first
// bucket whose keywords match wins, matching bios_service.py's
// dict-insertion-order walk over PARAM_CATEGORIES.
var categoryOrder = []Category{
	CategoryCPUPower, CategoryCPUFreq, CategoryCPUVoltage, CategoryMemory, CategoryCPUFeatures,
}

var powerLimitFinderKeywords = mapset.NewSet(
	"power limit", "tdp", "thermal design power", "pl1", "pl2",
	"long duration", "short duration", "package power", "ppt",
	"tdc", "edc", "power target",
)

var voltageFinderKeywords = mapset.NewSet(
	"voltage", "vcore", "offset", "vid", "core volt",
)

var xmpFinderKeywords = mapset.NewSet(
	"xmp", "docp", "memory profile", "extreme memory profile",
)

var cstateFinderKeywords = mapset.NewSet(
	"c-state", "c state", "c1e", "c3", "c6", "c7", "package c state",
)

var turboFinderKeywords = mapset.NewSet(
	"turbo", "boost", "intel turbo", "precision boost", "core performance",
)

// anyKeywordIn reports whether any keyword in set occurs as a
// case-insensitive substring of name.
func anyKeywordIn(set mapset.Set[string], name string) bool {
	lower := strings.ToLower(name)
	for kw := range set.Iter() {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func categorize(name string) Category {
	for _, cat := range categoryOrder {
		if anyKeywordIn(categoryKeywords[cat], name) {
			return cat
		}
	}
	return CategoryOther
}

func isPerformanceRelated(name string) bool {
	return anyKeywordIn(performanceKeywords, name)
}

func requiresReboot(name string) bool {
	return anyKeywordIn(rebootRequiredKeywords, name)
}

// PerformanceBucket is the ad-hoc classification used by
// FindAllPerformanceParameters, which groups only the performance-related
// settings into the categories the Engine's stages search — a slightly
// different, coarser partition than Category above (bios_service.py keeps
// these as two independent keyword walks rather than reusing one table).
type PerformanceBucket string

const (
	BucketPower    PerformanceBucket = "power"
	BucketVoltage  PerformanceBucket = "voltage"
	BucketMemory   PerformanceBucket = "memory"
	BucketCStates  PerformanceBucket = "cstates"
	BucketTurbo    PerformanceBucket = "turbo"
	BucketFeatures PerformanceBucket = "cpu_features"
	BucketOther    PerformanceBucket = "other"
)

var (
	bucketPowerKeywords   = mapset.NewSet("power", "limit", "tdp", "pl1", "pl2", "ppt")
	bucketVoltageKeywords = mapset.NewSet("voltage", "vcore", "offset", "vid")
	bucketMemoryKeywords  = mapset.NewSet("memory", "ram", "xmp", "docp")
	bucketCStateKeywords  = mapset.NewSet("c-state", "c state", "c1e", "c3", "c6")
	bucketTurboKeywords   = mapset.NewSet("turbo", "boost")
	bucketFeatureKeywords = mapset.NewSet("smt", "hyper", "thread", "virtualization")
)

func classifyPerformanceBucket(name string) PerformanceBucket {
	switch {
	case anyKeywordIn(bucketPowerKeywords, name):
		return BucketPower
	case anyKeywordIn(bucketVoltageKeywords, name):
		return BucketVoltage
	case anyKeywordIn(bucketMemoryKeywords, name):
		return BucketMemory
	case anyKeywordIn(bucketCStateKeywords, name):
		return BucketCStates
	case anyKeywordIn(bucketTurboKeywords, name):
		return BucketTurbo
	case anyKeywordIn(bucketFeatureKeywords, name):
		return BucketFeatures
	default:
		return BucketOther
	}
}
