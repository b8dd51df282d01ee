package service

// Envelope carries the tagged outcome every entry point returns. A query
// either fully succeeds or reports an error with all result fields left
// empty; failures never propagate to the transport layer.
type Envelope struct {
	QueryID   string `json:"query_id"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// EdgePair is one directed edge in wire form.
type EdgePair struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// BuildRequest trains and stores a causal model.
type BuildRequest struct {
	ModelName       string           `json:"model_name"`
	CausalModelType string           `json:"causal_model_type"`
	GraphEdges      []EdgePair       `json:"graph_edges"`
	Observation     map[string][]any `json:"observation"`
	Seed            *int64           `json:"seed,omitempty"`
}

// BuildResult reports the training outcome.
type BuildResult struct {
	Envelope
	CausalModelType string `json:"causal_model_type"`
	SavedModel      string `json:"saved_model,omitempty"`
}

// InterventionInput is one (variable, value) intervention entry.
type InterventionInput struct {
	Variable string  `json:"variable"`
	Value    float64 `json:"value"`
}

// InterventionRequest draws samples under an intervention.
type InterventionRequest struct {
	ModelName        string              `json:"model_name"`
	InterventionType string              `json:"intervention_type"`
	Interventions    []InterventionInput `json:"intervention_input"`
	NumSamplesToDraw int                 `json:"num_samples_to_draw"`
	Seed             *int64              `json:"seed,omitempty"`
}

// InterventionResult carries the simulated samples.
type InterventionResult struct {
	Envelope
	InterventionType string           `json:"intervention_type"`
	Samples          []map[string]any `json:"intervention_output,omitempty"`
}

// CounterfactualRequest answers a counterfactual query for observed rows.
type CounterfactualRequest struct {
	ModelName     string              `json:"model_name"`
	Interventions []InterventionInput `json:"counterfactual_input"`
	Observation   map[string][]any    `json:"observation"`
	Seed          *int64              `json:"seed,omitempty"`
}

// CounterfactualResult carries the counterfactual rows.
type CounterfactualResult struct {
	Envelope
	Samples []map[string]any `json:"counterfactual_output,omitempty"`
}

// RankedScore is one attribution entry in the descending presentation order.
type RankedScore struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
}

// AttributionPayload is the shared shape of all attribution answers: raw
// scores keyed by contributor, a percentage-normalized view, bootstrap
// confidence intervals, and a descending ranking for presentation.
type AttributionPayload struct {
	Scores      map[string]float64    `json:"scores,omitempty"`
	Percentages map[string]float64    `json:"percentages,omitempty"`
	Intervals   map[string][2]float64 `json:"intervals,omitempty"`
	Ranked      []RankedScore         `json:"ranked,omitempty"`
}

// ArrowStrengthRequest estimates direct arrow strengths into a target node.
type ArrowStrengthRequest struct {
	ModelName             string `json:"model_name"`
	TargetNode            string `json:"target_node"`
	NumSamples            int    `json:"num_samples,omitempty"`
	NumBootstrapResamples int    `json:"num_bootstrap_resamples,omitempty"`
	Seed                  *int64 `json:"seed,omitempty"`
}

// ArrowStrengthResult reports edge- and node-keyed strengths.
type ArrowStrengthResult struct {
	Envelope
	TargetNode string              `json:"target_node"`
	Edges      *AttributionPayload `json:"arrow_strength_edge,omitempty"`
	Nodes      *AttributionPayload `json:"arrow_strength_node,omitempty"`
}

// IntrinsicInfluenceRequest estimates intrinsic causal influence on a target.
type IntrinsicInfluenceRequest struct {
	ModelName               string `json:"model_name"`
	TargetNode              string `json:"target_node"`
	NumSamplesRandomization int    `json:"num_samples_randomization,omitempty"`
	NumBootstrapResamples   int    `json:"num_bootstrap_resamples,omitempty"`
	Seed                    *int64 `json:"seed,omitempty"`
}

// IntrinsicInfluenceResult reports the per-node influence decomposition.
type IntrinsicInfluenceResult struct {
	Envelope
	TargetNode string              `json:"target_node"`
	Influence  *AttributionPayload `json:"intrinsic_influence,omitempty"`
}

// AnomalyAttributionRequest attributes an anomalous observation.
type AnomalyAttributionRequest struct {
	ModelName             string           `json:"model_name"`
	AnomalousNode         string           `json:"anomalous_node"`
	AnomalyData           map[string][]any `json:"anomaly_data"`
	NumBootstrapResamples int              `json:"num_bootstrap_resamples,omitempty"`
	Seed                  *int64           `json:"seed,omitempty"`
}

// AnomalyAttributionResult reports the per-node anomaly decomposition.
type AnomalyAttributionResult struct {
	Envelope
	AnomalousNode string              `json:"anomalous_node"`
	Attribution   *AttributionPayload `json:"anomaly_attribution,omitempty"`
}

// FalsifyRequest checks a graph against data; no fitted model is involved.
type FalsifyRequest struct {
	GraphEdges  []EdgePair       `json:"graph_edges"`
	Observation map[string][]any `json:"observation"`
}

// FalsifyResult reports the falsification verdict.
type FalsifyResult struct {
	Envelope
	Falsifiable *bool  `json:"falsifiable,omitempty"`
	Falsified   *bool  `json:"falsified,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// EvaluateRequest summarizes a stored model, optionally with a falsification
// run against fresh observations.
type EvaluateRequest struct {
	ModelName   string           `json:"model_name"`
	Observation map[string][]any `json:"observation,omitempty"`
}

// EvaluateResult carries the rendered evaluation report.
type EvaluateResult struct {
	Envelope
	Markdown string `json:"markdown,omitempty"`
	HTML     string `json:"html,omitempty"`
}
