package main

//go:generate swag init -d ../../ -g cmd/tracker/main.go -o ../../docs

// @title           Contest Tracker API
// @version         0.1.0
// @description     Contest aggregation, status sweeps and reminder subscriptions.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
