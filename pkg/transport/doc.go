// Package transport opens the duplex byte stream the scheduler's CLI
// speaks wire.Reader/wire.Writer over. It knows nothing about
// scheduling: it hands back an io.ReadWriteCloser, selected by a single
// endpoint string, per the configuration surface's "transport endpoint
// identifier".
package transport
