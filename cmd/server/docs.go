// Package main Sokoni Payments API
//
//	@title			Sokoni Payments API
//	@version		1.0
//	@description	M-Pesa STK push initiation and payment reconciliation
//
//	@host			localhost:8080
//	@BasePath		/api/v1
//
//	@tag.name			payments
//	@tag.description	STK push initiation, provider callbacks and status
package main
