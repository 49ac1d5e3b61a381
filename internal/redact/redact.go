// Package redact detects and masks secrets accidentally captured in
// clipboard text, editor-DB prompt text, and terminal command output
// before it reaches the Normalizer. It is a defensive measure against
// leaking pasted credentials into the local store, not a PII-evasion tool.
package redact

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// secretPattern matches candidate high-entropy token spans worth scoring.
var secretPattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the minimum Shannon entropy for a candidate span to
// be treated as a secret rather than an ordinary identifier or word.
// Overridable via SetEntropyThreshold from the pii-redaction.entropy-threshold
// config key; 4.5 matches the teacher's own secret-scanning default.
var entropyThreshold = 4.5

// SetEntropyThreshold overrides the entropy cutoff used by String. Called
// once at startup from the resolved configuration.
func SetEntropyThreshold(t float64) {
	if t > 0 {
		entropyThreshold = t
	}
}

var (
	gitleaksDetector     *detect.Detector
	gitleaksDetectorOnce sync.Once
)

func getDetector() *detect.Detector {
	gitleaksDetectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		gitleaksDetector = d
	})
	return gitleaksDetector
}

type region struct{ start, end int }

// String replaces detected secrets in s with "REDACTED". Two independent
// detectors flag candidate spans; a span redacted by either is masked:
//  1. Entropy-based — token spans of 10+ base64/hex-ish characters whose
//     Shannon entropy exceeds entropyThreshold.
//  2. Pattern-based — gitleaks' built-in rule set (AWS keys, GitHub
//     tokens, private key headers, and the rest of its ~180 detectors).
func String(s string) string {
	var regions []region

	for _, loc := range secretPattern.FindAllStringIndex(s, -1) {
		if shannonEntropy(s[loc[0]:loc[1]]) > entropyThreshold {
			regions = append(regions, region{loc[0], loc[1]})
		}
	}

	if d := getDetector(); d != nil {
		for _, f := range d.DetectString(s) {
			if f.Secret == "" {
				continue
			}
			searchFrom := 0
			for {
				idx := strings.Index(s[searchFrom:], f.Secret)
				if idx < 0 {
					break
				}
				abs := searchFrom + idx
				regions = append(regions, region{abs, abs + len(f.Secret)})
				searchFrom = abs + len(f.Secret)
			}
		}
	}

	if len(regions) == 0 {
		return s
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].start < regions[j].start })
	merged := []region{regions[0]}
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
		} else {
			merged = append(merged, r)
		}
	}

	var b strings.Builder
	prev := 0
	for _, r := range merged {
		b.WriteString(s[prev:r.start])
		b.WriteString("REDACTED")
		prev = r.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[byte]int)
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
