package transport

type Addr interface {
	Network() string
	String() string
}
