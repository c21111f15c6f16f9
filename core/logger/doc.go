// Package logger records shell events as newline delimited JSON.
//
// Entries are protobuf Struct values serialized with protojson, so the log
// can be read back with ReadJSONLinesLog and summarized with a Report.
package logger
