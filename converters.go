package prethrift

import (
	"fmt"

	"github.com/wabenzi/prethrift/internal/domain/attribute"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/preference"
	"github.com/wabenzi/prethrift/internal/domain/result"
	"github.com/wabenzi/prethrift/internal/domain/verdict"
	discoveryuc "github.com/wabenzi/prethrift/internal/usecase/discovery"
)

func toDomainGarment(g Garment) (garment.Garment, error) {
	dg, err := garment.New(
		g.ID, g.Title, g.Brand, g.Price, g.Currency,
		g.ImagePath, g.Description, nil, g.Extras,
	)
	if err != nil {
		return garment.Garment{}, fmt.Errorf("prethrift: %w", err)
	}
	return dg, nil
}

func garmentInfoFrom(g garment.Garment) GarmentInfo {
	return GarmentInfo{
		Garment: Garment{
			ID:          g.ID(),
			Title:       g.Title(),
			Brand:       g.Brand(),
			Price:       g.Price(),
			Currency:    g.Currency(),
			ImagePath:   g.ImagePath(),
			Description: g.Description(),
			Extras:      g.Extras(),
		},
		Attributes: attributesFrom(g.Attributes()),
	}
}

func attributesFrom(as []attribute.Assignment) []Attribute {
	if len(as) == 0 {
		return nil
	}
	out := make([]Attribute, len(as))
	for i, a := range as {
		out[i] = Attribute{
			Family:     string(a.Family()),
			Value:      a.Value(),
			Confidence: a.Confidence(),
			Source:     string(a.Source()),
		}
	}
	return out
}

func verdictFrom(v verdict.Verdict) Verdict {
	return Verdict{
		Status:          VerdictStatus(v.Status()),
		Reason:          v.Reason(),
		Interpretations: v.Interpretations(),
		Overridden:      v.Overridden(),
	}
}

func searchResponseFrom(resp discoveryuc.Response) SearchResponse {
	out := SearchResponse{
		Verdict:  verdictFrom(resp.Verdict),
		Degraded: resp.Degraded,
	}
	for i := range resp.Results {
		r := &resp.Results[i]
		b := r.Breakdown()
		out.Results = append(out.Results, SearchResult{
			Garment: garmentInfoFrom(r.Garment()),
			Score:   r.Score(),
			Breakdown: ScoreBreakdown{
				Similarity:       b.Similarity,
				AttributeOverlap: b.AttributeOverlap,
				Preference:       b.Preference,
			},
		})
	}
	return out
}

func similarFrom(items []result.Similar) []SimilarGarment {
	out := make([]SimilarGarment, len(items))
	for i, it := range items {
		out[i] = SimilarGarment{
			Garment:    garmentInfoFrom(it.Garment),
			Similarity: it.Similarity,
		}
	}
	return out
}

func preferencesFrom(v preference.Vector) Preferences {
	return Preferences{
		UserID:    v.UserID(),
		Weights:   v.Weights(),
		UpdatedAt: v.UpdatedAt(),
	}
}
