// Package fmp is a small client for the Financial Modeling Prep REST API:
// company profiles and the three annual or quarterly financial statements.
package fmp
