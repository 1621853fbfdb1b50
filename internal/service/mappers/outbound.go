package mappers

import (
	"encoding/json"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
)

func RowToApi(r model.Row) api.RowStatus {
	return api.RowStatus{
		RowIndex:        r.RowIndex,
		CompanyName:     r.CompanyName,
		Status:          string(r.Status),
		ProgressPercent: r.Status.Percent(),
		FailedStage:     string(r.FailedStage),
		Attempt:         r.Attempt,
		DeckURL:         r.ArtifactURL,
		PptxURL:         r.ExportURL,
		Error:           r.Error,
		ErrorKind:       string(r.ErrorKind),
	}
}

func JobStatusToApi(j model.Job, rows []model.Row) api.JobStatusReply {
	reply := api.JobStatusReply{
		JobID:           j.ID,
		Status:          api.JobStatus(j.Status),
		TotalRows:       j.TotalRows,
		Completed:       j.CompletedCount,
		Failed:          j.FailedCount,
		ProgressPercent: j.ProgressPercent(),
		OutputFile:      j.OutputArtifactRef,
		Cancelled:       j.Cancelled,
		Error:           j.Error,
		Rows:            make([]api.RowStatus, 0, len(rows)),
	}
	for _, r := range rows {
		reply.Rows = append(reply.Rows, RowToApi(r))
	}
	return reply
}

func SingleStatusToApi(j model.Job, r model.Row) api.SingleStatusReply {
	return api.SingleStatusReply{
		JobID:           j.ID,
		CompanyName:     r.CompanyName,
		Status:          api.JobStatus(j.Status),
		Completed:       j.CompletedCount,
		Failed:          j.FailedCount,
		ProgressPercent: r.Status.Percent(),
		CurrentStage:    string(r.Status),
		FailedStage:     string(r.FailedStage),
		DeckURL:         r.ArtifactURL,
		PptxURL:         r.ExportURL,
		Error:           r.Error,
	}
}

func DeckSummaryToApi(d model.GeneratedDeck) api.DeckSummary {
	return api.DeckSummary{
		ID:           d.ID.String(),
		JobID:        d.JobID,
		CompanyName:  d.CompanyName,
		ContactName:  d.ContactName,
		DeckURL:      d.DeckURL,
		PptxURL:      d.ExportURL,
		GenerationID: d.GenerationID,
		CreatedAt:    d.CreatedAt,
	}
}

func DeckDetailToApi(d model.GeneratedDeck) api.DeckDetail {
	return api.DeckDetail{
		DeckSummary:    DeckSummaryToApi(d),
		Industry:       d.Industry,
		ContactTitle:   d.ContactTitle,
		ResearchData:   rawJSON(d.Research),
		PitchContent:   rawJSON(d.Content),
		MappedServices: rawJSON(d.MappedServices),
	}
}

func DeckListToApi(decks []model.GeneratedDeck, total int64, limit, offset int) api.DeckList {
	list := api.DeckList{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Decks:  make([]api.DeckSummary, 0, len(decks)),
	}
	for _, d := range decks {
		list.Decks = append(list.Decks, DeckSummaryToApi(d))
	}
	return list
}

// rawJSON drops payloads that are not valid JSON so they cannot corrupt the reply.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}
