// Package catalog holds the static stage vocabulary: the canonical lifecycle
// and the stage lists of each source pipeline.
package catalog

import (
	"errors"
	"fmt"

	"flow-efficiency/pkg/models"
)

var (
	ErrUnknownStage       = errors.New("unknown canonical stage")
	ErrUnknownPipeline    = errors.New("unknown pipeline")
	ErrStageNotInPipeline = errors.New("stage does not belong to pipeline")
)

const (
	StageLeadGenerated models.CanonicalStage = "Lead Generated"
	StageQualification models.CanonicalStage = "Qualification"
	StageProposalSent  models.CanonicalStage = "Proposal Sent"
	StageNegotiation   models.CanonicalStage = "Negotiation"
	StageOrderReceived models.CanonicalStage = "Order Received"
	StageProcurement   models.CanonicalStage = "Procurement"
	StageManufacturing models.CanonicalStage = "Manufacturing"
	StageDelivery      models.CanonicalStage = "Delivery"
	StagePayment       models.CanonicalStage = "Payment"
)

const (
	SalesPipeline       = "Sales Pipeline"
	FulfillmentPipeline = "Fulfillment Pipeline"
)

var canonicalStages = []models.CanonicalStage{
	StageLeadGenerated,
	StageQualification,
	StageProposalSent,
	StageNegotiation,
	StageOrderReceived,
	StageProcurement,
	StageManufacturing,
	StageDelivery,
	StagePayment,
}

// Pipeline is a source pipeline and its ordered stage names
type Pipeline struct {
	Name   string   `json:"name"`
	Stages []string `json:"stages"`
}

var pipelines = []Pipeline{
	{Name: SalesPipeline, Stages: []string{"Lead In", "Qualified", "Proposal Made", "Negotiation", "Won"}},
	{Name: FulfillmentPipeline, Stages: []string{"Goods Ordered", "In Production", "Shipped", "Paid"}},
}

// CanonicalStages returns the full lifecycle in order
func CanonicalStages() []models.CanonicalStage {
	out := make([]models.CanonicalStage, len(canonicalStages))
	copy(out, canonicalStages)
	return out
}

// Pipelines returns a copy of the pipeline stage table
func Pipelines() []Pipeline {
	out := make([]Pipeline, len(pipelines))
	for i, p := range pipelines {
		out[i] = Pipeline{Name: p.Name, Stages: append([]string(nil), p.Stages...)}
	}
	return out
}

func IsCanonicalStage(stage models.CanonicalStage) bool {
	for _, s := range canonicalStages {
		if s == stage {
			return true
		}
	}
	return false
}

func lookupPipeline(name string) (Pipeline, bool) {
	for _, p := range pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return Pipeline{}, false
}

// PipelineHasStage reports whether stage is one of pipeline's steps
func PipelineHasStage(pipeline, stage string) bool {
	return ValidateBoundary(pipeline, stage) == nil
}

// ValidateBoundary checks that stage can bound a mapping on pipeline
func ValidateBoundary(pipeline, stage string) error {
	p, ok := lookupPipeline(pipeline)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPipeline, pipeline)
	}
	for _, s := range p.Stages {
		if s == stage {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not a stage of %q", ErrStageNotInPipeline, stage, pipeline)
}
