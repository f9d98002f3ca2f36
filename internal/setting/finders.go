package setting

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import mapset "github.com/deckarep/golang-set/v2"

// findNames walks ParseAll's result, collecting names whose keywords
// match; when performanceOnly is set only performance-related settings
// are considered (every finder sets it except FindXMPParameters and
// FindCStateParameters).
func (s *Store) findNames(keywords mapset.Set[string], performanceOnly bool) ([]string, error) {
	settings, err := s.ParseAll()
	if err != nil {
		return nil, err
	}
	var names []string
	for name, st := range settings {
		if performanceOnly && !st.PerformanceRelated {
			continue
		}
		if anyKeywordIn(keywords, name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// FindPowerLimitParameters finds performance-related settings matching
// the power-limit keyword table (PL1/PL2/PPT/TDC/EDC/package power/...).
func (s *Store) FindPowerLimitParameters() ([]string, error) {
	return s.findNames(powerLimitFinderKeywords, true)
}

// FindVoltageParameters finds performance-related voltage settings.
func (s *Store) FindVoltageParameters() ([]string, error) {
	return s.findNames(voltageFinderKeywords, true)
}

// FindXMPParameters finds memory-profile settings; unlike the other
// finders this is not restricted to performance-related settings.
func (s *Store) FindXMPParameters() ([]string, error) {
	return s.findNames(xmpFinderKeywords, false)
}

// FindCStateParameters finds C-State settings; not restricted to
// performance-related settings.
func (s *Store) FindCStateParameters() ([]string, error) {
	return s.findNames(cstateFinderKeywords, false)
}

// FindTurboBoostParameters finds performance-related turbo/boost settings.
func (s *Store) FindTurboBoostParameters() ([]string, error) {
	return s.findNames(turboFinderKeywords, true)
}

// FindAllPerformanceParameters buckets every performance-related setting
// into the coarser PerformanceBucket classification.
func (s *Store) FindAllPerformanceParameters() (map[PerformanceBucket][]string, error) {
	settings, err := s.ParseAll()
	if err != nil {
		return nil, err
	}
	buckets := map[PerformanceBucket][]string{
		BucketPower: nil, BucketVoltage: nil, BucketMemory: nil,
		BucketCStates: nil, BucketTurbo: nil, BucketFeatures: nil, BucketOther: nil,
	}
	for name, st := range settings {
		if !st.PerformanceRelated {
			continue
		}
		b := classifyPerformanceBucket(name)
		buckets[b] = append(buckets[b], name)
	}
	return buckets, nil
}
