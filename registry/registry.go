/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package registry is the read-only catalog of known fax recipients.
// Contents are loaded once at start-up; changing them requires a redeploy.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

//go:embed destinations.json
var catalog []byte

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Match is a FindByText hit.
type Match struct {
	model.Destination
	Confidence Confidence `json:"confidence"`
}

// Registry is safe for concurrent use: nothing mutates it after construction.
type Registry struct {
	byKey    map[string]model.Destination
	byNumber map[string]string
	ordered  []model.Destination
}

// Default parses the embedded catalog.
func Default() (*Registry, error) {
	return Load(catalog)
}

// Load builds a registry from a JSON array of destinations.
func Load(data []byte) (*Registry, error) {
	var destinations []model.Destination
	if err := json.Unmarshal(data, &destinations); err != nil {
		return nil, fmt.Errorf("failed to parse destination catalog: %w", err)
	}
	return New(destinations)
}

func New(destinations []model.Destination) (*Registry, error) {
	r := &Registry{
		byKey:    make(map[string]model.Destination, len(destinations)),
		byNumber: make(map[string]string, len(destinations)),
	}
	for _, d := range destinations {
		d.Key = strings.ToUpper(strings.TrimSpace(d.Key))
		if d.Key == "" {
			return nil, fmt.Errorf("destination %q has no key", d.Name)
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, fmt.Errorf("duplicate destination key %s", d.Key)
		}
		if _, _, err := model.ParseClock(d.BestSendTime); d.BestSendTime != "" && err != nil {
			return nil, fmt.Errorf("destination %s: %w", d.Key, err)
		}
		d.Number = model.NormalizeE164(d.Number)
		r.byKey[d.Key] = d
		r.byNumber[d.Number] = d.Key
		r.ordered = append(r.ordered, d)
	}
	return r, nil
}

// Get returns the destination registered under key.
func (r *Registry) Get(key string) (model.Destination, error) {
	d, ok := r.byKey[strings.ToUpper(strings.TrimSpace(key))]
	if !ok {
		msg := fmt.Sprintf("destination '%s' not found", key)
		if suggestion := r.closestKey(key); suggestion != "" {
			msg = fmt.Sprintf("%s, did you mean '%s'?", msg, suggestion)
		}
		return model.Destination{}, apierror.NewAPIError(apierror.ErrNotFound, msg, nil)
	}
	return d, nil
}

// FindByNumber looks a destination up by its E.164 fax number.
func (r *Registry) FindByNumber(number string) (model.Destination, error) {
	key, ok := r.byNumber[model.NormalizeE164(number)]
	if !ok {
		return model.Destination{}, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("no destination registered for %s", number), nil)
	}
	return r.byKey[key], nil
}

// FindByText matches query case-insensitively against name, key and category.
// An exact name match is ranked first.
func (r *Registry) FindByText(query string) []Match {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return nil
	}

	var matches []Match
	for _, d := range r.ordered {
		name := strings.ToLower(d.Name)
		if !strings.Contains(name, term) &&
			!strings.Contains(strings.ToLower(d.Key), term) &&
			!strings.Contains(string(d.Category), term) {
			continue
		}
		confidence := ConfidenceMedium
		if name == term {
			confidence = ConfidenceHigh
		}
		matches = append(matches, Match{Destination: d, Confidence: confidence})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence == ConfidenceHigh && matches[j].Confidence != ConfidenceHigh
	})
	return matches
}

func (r *Registry) ListByCategory(category model.Type) []model.Destination {
	var out []model.Destination
	for _, d := range r.ordered {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// All returns the catalog in declaration order.
func (r *Registry) All() []model.Destination {
	out := make([]model.Destination, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) closestKey(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return ""
	}
	best, bestDistance := "", -1
	for _, d := range r.ordered {
		distance := levenshtein.DistanceForStrings([]rune(key), []rune(d.Key), levenshtein.DefaultOptions)
		if bestDistance == -1 || distance < bestDistance {
			best, bestDistance = d.Key, distance
		}
	}
	// only suggest when the typo is small relative to the key
	if bestDistance > len(key)/2 {
		return ""
	}
	return best
}
