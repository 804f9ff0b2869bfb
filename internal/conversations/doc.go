// Package conversations defines the normalized conversation model shared
// by every source adapter, the aggregator, and the exporter. Adapters
// extract source-native records into these value types; nothing mutates
// them afterwards.
package conversations
