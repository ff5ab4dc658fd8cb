// Package internaldefs holds the metric names and bucket labels shared by
// the Prometheus and OTel exporters. Bucket labels are derived from
// usersvc.LatencyBuckets.
package internaldefs
