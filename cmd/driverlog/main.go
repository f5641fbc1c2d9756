// Package main is the entry point for the driverlog trip-planning service.
package main

func main() {
	Execute()
}
