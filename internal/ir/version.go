package ir

// ExprVersion is the version of the expression text format. It is part of
// every fingerprint domain so that a format change never collides with
// fingerprints produced by an older engine.
const ExprVersion = "1"
