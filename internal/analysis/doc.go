// Package analysis derives views of a finished trajectory that are not
// plain time series.
package analysis
