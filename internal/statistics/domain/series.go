package statistics

// Source tags every series this service owns in the external store.
const Source = "delco_water"

// Series ids surfaced to the statistics store.
const (
	ConsumptionSeriesID = Source + ":consumption"
	CostSeriesID        = Source + ":cost"
)

// SeriesMeta describes one external statistics series.
type SeriesMeta struct {
	ID      string
	Source  string
	Name    string
	Unit    string
	HasMean bool
	HasSum  bool
}

// ConsumptionSeries carries per-period water usage in gallons.
var ConsumptionSeries = SeriesMeta{
	ID:     ConsumptionSeriesID,
	Source: Source,
	Name:   "Del-Co Water Consumption",
	Unit:   "gal",
	HasSum: true,
}

// CostSeries carries per-bill charges in dollars.
var CostSeries = SeriesMeta{
	ID:     CostSeriesID,
	Source: Source,
	Name:   "Del-Co Water Cost",
	Unit:   "USD",
	HasSum: true,
}
