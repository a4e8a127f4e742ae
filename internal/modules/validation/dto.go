package validation

type ValidateRequest struct {
	Force bool `json:"force"`
}

type HeaderResultResponse struct {
	HeaderType    string `json:"header_type"`
	MatchedColumn string `json:"matched_column,omitempty"`
	Confidence    int    `json:"confidence"`
	Found         bool   `json:"found"`
	Method        string `json:"method"`
}

type SummaryResponse struct {
	AllFound            bool     `json:"all_found"`
	FoundCount          int      `json:"found_count"`
	TotalCount          int      `json:"total_count"`
	MissingHeaders      []string `json:"missing_headers"`
	CanGenerateInsights bool     `json:"can_generate_insights"`
}

type ReportResponse struct {
	Results []HeaderResultResponse `json:"results"`
	Summary SummaryResponse        `json:"summary"`
}

func toResponse(r *Report) ReportResponse {
	results := make([]HeaderResultResponse, 0, len(r.Results))
	for _, res := range r.Results {
		results = append(results, HeaderResultResponse{
			HeaderType:    string(res.HeaderType),
			MatchedColumn: res.MatchedColumn,
			Confidence:    res.Confidence,
			Found:         res.Found,
			Method:        res.Method,
		})
	}

	missing := make([]string, 0, len(r.MissingHeaders))
	for _, ht := range r.MissingHeaders {
		missing = append(missing, string(ht))
	}

	return ReportResponse{
		Results: results,
		Summary: SummaryResponse{
			AllFound:            r.AllFound,
			FoundCount:          r.FoundCount,
			TotalCount:          r.TotalCount,
			MissingHeaders:      missing,
			CanGenerateInsights: r.AllFound,
		},
	}
}
