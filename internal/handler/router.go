package handler

import (
	"net/http"

	"github.com/segyhp/premium-engine/pkg/response"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const uuidPattern = "[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}"

// NewRouter wires every route. CORS wraps the router itself because mux
// middleware never sees preflight requests for routes without OPTIONS.
func NewRouter(premiumHandler *PremiumHandler, healthHandler *HealthHandler, allowedOrigins []string, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger))
	router.Use(response.JSONMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	quote := api.PathPrefix("/quotes/{quoteId}").Subrouter()
	quote.HandleFunc("/premium", premiumHandler.Calculate).Methods("GET")
	quote.HandleFunc("/premium/preview", premiumHandler.Recalculate).Methods("POST")
	quote.HandleFunc("/form-data", premiumHandler.ApplyOverrides).Methods("PATCH")
	quote.HandleFunc("/schedule", premiumHandler.GenerateSchedule).Methods("POST")
	quote.HandleFunc("/schedule", premiumHandler.GetSchedule).Methods("GET")
	quote.HandleFunc("/schedule.xlsx", premiumHandler.ExportSchedule).Methods("GET")

	quote.HandleFunc("/installments", premiumHandler.PatchInstallments).Methods("PATCH")
	quote.HandleFunc("/installments", premiumHandler.AddInstallment).Methods("POST")
	quote.HandleFunc("/installments", premiumHandler.DeleteInstallments).Methods("DELETE")
	quote.HandleFunc("/installments/next/emit", premiumHandler.EmitNextInstallment).Methods("POST")

	installment := "/installments/{installmentId:" + uuidPattern + "}"
	quote.HandleFunc(installment, premiumHandler.PatchInstallment).Methods("PATCH")
	quote.HandleFunc(installment+"/emit", premiumHandler.EmitInstallment).Methods("POST")
	quote.HandleFunc(installment+"/payment", premiumHandler.RecordPayment).Methods("POST")
	quote.HandleFunc(installment+"/cancel", premiumHandler.CancelInstallment).Methods("POST")
	quote.HandleFunc(installment+"/premium-call", premiumHandler.PremiumCall).Methods("GET")

	api.HandleFunc("/installments/overdue", premiumHandler.MarkOverdue).Methods("POST")
	api.HandleFunc("/activities", premiumHandler.Activities).Methods("GET")
	api.HandleFunc("/activities/{code}", premiumHandler.LookupActivity).Methods("GET")

	return response.CORSMiddleware(allowedOrigins)(router)
}
