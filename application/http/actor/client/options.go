package client

import (
	"time"

	"github.com/me7398/monarch/application/http/webconn"
)

type Options struct {
	// Conn configures every dialed connection.
	// Its logger and clock default to the client's.
	Conn webconn.Options

	Timeout TimeoutOptions
}

type TimeoutOptions struct {
	// ExchangeTimeout bounds a whole exchange, from dial to the last response byte.
	ExchangeTimeout time.Duration
}
