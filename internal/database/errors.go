package database

import "fmt"

// ConnectionError is returned when the connectivity self-test fails
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to connect to %s database: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
