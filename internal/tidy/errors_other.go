//go:build !unix

package tidy

func errnoKind(error) ErrorKind { return "" }
