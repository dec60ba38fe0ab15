package upstream

import (
	"bytes"
	"encoding/json"

	"trader-alpha-lab/internal/domain"
)

// flexFloat tolerates the upstream habit of mixing numbers and numeric
// strings. Invalid, non-finite or absent values leave Valid false;
// unmarshalling never fails.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	f.Value, f.Valid = 0, false

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	if x, ok := domain.AsFiniteNumber(v); ok {
		f.Value, f.Valid = x, true
	}
	return nil
}

// Ptr returns the value as a nullable float, nil when invalid.
func (f flexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// IntPtr truncates the value to a nullable int, nil when invalid.
func (f flexFloat) IntPtr() *int {
	if !f.Valid {
		return nil
	}
	v := int(f.Value)
	return &v
}

// flexPoint accepts both series point encodings: a [timestamp, value]
// tuple and a {timestamp, value|pnl} record. Malformed points leave
// Valid false without failing the surrounding array.
type flexPoint struct {
	Point domain.SeriesPoint
	Valid bool
}

func (p *flexPoint) UnmarshalJSON(data []byte) error {
	p.Valid = false

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var tuple []flexFloat
		if err := json.Unmarshal(trimmed, &tuple); err != nil || len(tuple) < 2 {
			return nil
		}
		if !tuple[0].Valid || !tuple[1].Valid {
			return nil
		}
		p.Point = domain.SeriesPoint{TimestampMs: int64(tuple[0].Value), Value: tuple[1].Value}
		p.Valid = true
	case '{':
		var obj struct {
			Timestamp flexFloat `json:"timestamp"`
			Value     flexFloat `json:"value"`
			Pnl       flexFloat `json:"pnl"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil
		}
		value := obj.Value
		if !value.Valid {
			value = obj.Pnl
		}
		if !obj.Timestamp.Valid || !value.Valid {
			return nil
		}
		p.Point = domain.SeriesPoint{TimestampMs: int64(obj.Timestamp.Value), Value: value.Value}
		p.Valid = true
	}
	return nil
}

// flexStrings keeps the string elements of a JSON array, discarding
// anything else.
type flexStrings []string

func (s *flexStrings) UnmarshalJSON(data []byte) error {
	*s = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	for _, item := range raw {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			*s = append(*s, str)
		}
	}
	return nil
}

func points(list []flexPoint) []domain.SeriesPoint {
	out := make([]domain.SeriesPoint, 0, len(list))
	for _, p := range list {
		if p.Valid {
			out = append(out, p.Point)
		}
	}
	return out
}

// rawAddressStats is the wire shape of the stats blob, shared by the
// leaderboard page and the stats endpoint.
type rawAddressStats struct {
	WinRate        flexFloat `json:"winRate"`
	OpenPosCount   flexFloat `json:"openPosCount"`
	ClosePosCount  flexFloat `json:"closePosCount"`
	AvgPosDuration flexFloat `json:"avgPosDuration"`
	TotalPnl       flexFloat `json:"totalPnl"`
	MaxDrawdown    flexFloat `json:"maxDrawdown"`
}

func (s *rawAddressStats) toDomain() *domain.AddressStats {
	if s == nil {
		return nil
	}
	return &domain.AddressStats{
		WinRate:        s.WinRate.Ptr(),
		OpenPosCount:   s.OpenPosCount.IntPtr(),
		ClosePosCount:  s.ClosePosCount.IntPtr(),
		AvgPosDuration: s.AvgPosDuration.Ptr(),
		TotalPnl:       s.TotalPnl.Ptr(),
		MaxDrawdown:    s.MaxDrawdown.Ptr(),
	}
}

// rawLeaderboardEntry is the wire shape of one leaderboard row.
type rawLeaderboardEntry struct {
	Address        string           `json:"address"`
	WinRate        flexFloat        `json:"winRate"`
	ExecutedOrders flexFloat        `json:"executedOrders"`
	RealizedPnl    flexFloat        `json:"realizedPnl"`
	Remark         string           `json:"remark"`
	Labels         flexStrings      `json:"labels"`
	PnlList        []flexPoint      `json:"pnlList"`
	MaxDrawdown    flexFloat        `json:"maxDrawdown"`
	Stats          *rawAddressStats `json:"stats"`
}

func (r *rawLeaderboardEntry) toDomain() *domain.RawLeaderboardEntry {
	e := &domain.RawLeaderboardEntry{
		Address:     r.Address,
		Remark:      r.Remark,
		Labels:      r.Labels,
		PnlList:     points(r.PnlList),
		MaxDrawdown: r.MaxDrawdown.Ptr(),
	}
	if r.WinRate.Valid {
		e.WinRate = r.WinRate.Value
	}
	if r.ExecutedOrders.Valid {
		e.ExecutedOrders = int(r.ExecutedOrders.Value)
	}
	if r.RealizedPnl.Valid {
		e.RealizedPnl = r.RealizedPnl.Value
	}
	if r.Stats != nil {
		e.Stats = r.Stats.toDomain()
	}
	return e
}

// rawWindowBody is the per-window object of the portfolio endpoint.
type rawWindowBody struct {
	PnlHistory          []flexPoint `json:"pnlHistory"`
	AccountValueHistory []flexPoint `json:"accountValueHistory"`
}

// parseWindowSeries decodes the portfolio response: a top-level list of
// (windowName, body) tuples. Returns nil when the overall structure does
// not match; individual malformed points are discarded, valid neighbors
// kept.
func parseWindowSeries(data []byte) []domain.WindowSeries {
	var tuples []json.RawMessage
	if err := json.Unmarshal(data, &tuples); err != nil {
		return nil
	}

	var out []domain.WindowSeries
	for _, tuple := range tuples {
		var parts []json.RawMessage
		if err := json.Unmarshal(tuple, &parts); err != nil || len(parts) < 2 {
			continue
		}
		var window string
		if err := json.Unmarshal(parts[0], &window); err != nil || window == "" {
			continue
		}
		var body rawWindowBody
		if err := json.Unmarshal(parts[1], &body); err != nil {
			continue
		}
		out = append(out, domain.WindowSeries{
			Window:              window,
			PnlHistory:          points(body.PnlHistory),
			AccountValueHistory: points(body.AccountValueHistory),
		})
	}
	return out
}
