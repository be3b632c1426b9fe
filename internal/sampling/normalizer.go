// Package sampling applies per-model-family overrides to the sampling
// parameters (temperature, top_p, min_p) a request asks for, per spec §4.D.
package sampling

import "strings"

// Params is the normalized set of sampling knobs sent to a backend adapter.
type Params struct {
	Temperature float64
	TopP        float64
	MinP        *float64 // passthrough, nil if the client didn't set it
}

// Request is the subset of the client's sampling fields the normalizer
// reads; pointers are nil when the field was absent from the request.
type Request struct {
	Temperature *float64
	TopP        *float64
	MinP        *float64
}

// Normalize applies the model-family override table. The `glm*` family
// forces temperature=0.7, top_p=1.0 regardless of client values; every
// other family passes client values through, defaulting to
// temperature=0.7, top_p=0.9 when absent. min_p always passes through
// unchanged.
func Normalize(model string, req Request) Params {
	if isGLMFamily(model) {
		return Params{Temperature: 0.7, TopP: 1.0, MinP: req.MinP}
	}
	p := Params{Temperature: 0.7, TopP: 0.9, MinP: req.MinP}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	return p
}

func isGLMFamily(model string) bool {
	name := model
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return strings.HasPrefix(strings.ToLower(name), "glm")
}
