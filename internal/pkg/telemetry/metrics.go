package telemetry

// Span names used for instrumentation.
const (
	SpanFetchFeatures  = "layers.fetch_features"
	SpanConvert        = "layers.convert"
	SpanDensestCell    = "density.find_densest_cell"
	SpanRecommendZone  = "zones.recommend"
	SpanRecommendAll   = "zones.recommend_all"
	SpanWeather        = "weather.fetch"
	SpanPublishZone    = "events.publish_zone"
	TracerInstrumentID = "github.com/samirrijal/geolayers"
)
