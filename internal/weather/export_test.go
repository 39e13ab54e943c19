package weather

// BuildPayload exposes the payload fixture to external test packages.
var BuildPayload = buildPayload

// FixtureStart is the window start used by the fixtures.
var FixtureStart = testStart
