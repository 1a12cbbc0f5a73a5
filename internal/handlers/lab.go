package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/havenlab/apiserver/internal/auth"
	"github.com/havenlab/apiserver/internal/reports"
	"github.com/havenlab/apiserver/internal/services"
	"github.com/havenlab/apiserver/types"
)

type LabHandler struct {
	lab *services.LabService
}

func NewLabHandler(lab *services.LabService) *LabHandler {
	return &LabHandler{lab: lab}
}

// LabRouter registers the diagnostic-laboratory routes on the given router.
func LabRouter(r chi.Router, lab *services.LabService) {
	handler := NewLabHandler(lab)

	r.Use(RequireCapability(auth.CapManageLab))

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", handler.CreatePatient)
		r.Get("/", handler.ListPatients)
		r.Get("/{patientID}", handler.GetPatient)
		r.Put("/{patientID}", handler.UpdatePatient)
		r.Delete("/{patientID}", handler.DeletePatient)
		r.Get("/{patientID}/tests", handler.ListPatientTests)
	})

	r.Route("/doctors", func(r chi.Router) {
		r.Post("/", handler.CreateDoctor)
		r.Get("/", handler.ListDoctors)
		r.Put("/{doctorID}", handler.UpdateDoctor)
		r.Delete("/{doctorID}", handler.DeleteDoctor)
	})

	r.Route("/tests", func(r chi.Router) {
		r.Post("/", handler.OrderTest)
		r.Patch("/{testID}/result", handler.RecordTestResult)
		r.Delete("/{testID}", handler.DeleteTest)
	})

	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", handler.CreateExpense)
		r.Get("/", handler.ListExpenses)
		r.Get("/export", handler.ExportExpenses)
		r.Delete("/{expenseID}", handler.DeleteExpense)
	})
}

type patientListResponse struct {
	Patients []types.Patient `json:"patients"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
}

type testResultRequest struct {
	Result string `json:"result"`
}

func urlParamInt(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// expenseWindow parses the optional from/to query range, defaulting to the
// current calendar month.
func expenseWindow(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date")
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date")
		}
		to = parsed
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must follow from")
	}
	return from, to, nil
}

func (h *LabHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var patient types.Patient
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.lab.CreatePatient(r.Context(), patient)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: created})
}

func (h *LabHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patients, total, err := h.lab.ListPatients(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: patientListResponse{
		Patients: patients,
		Total:    total,
		Page:     page,
		Limit:    limit,
	}})
}

func (h *LabHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "patientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patient, err := h.lab.GetPatient(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: patient})
}

func (h *LabHandler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "patientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patient types.Patient
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	patient.ID = id

	updated, err := h.lab.UpdatePatient(r.Context(), patient)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: updated})
}

func (h *LabHandler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "patientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.lab.DeletePatient(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *LabHandler) ListPatientTests(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "patientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tests, err := h.lab.ListTestsByPatient(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: tests})
}

func (h *LabHandler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var doctor types.Doctor
	if err := json.NewDecoder(r.Body).Decode(&doctor); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.lab.CreateDoctor(r.Context(), doctor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: created})
}

func (h *LabHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.lab.ListDoctors(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: doctors})
}

func (h *LabHandler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "doctorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var doctor types.Doctor
	if err := json.NewDecoder(r.Body).Decode(&doctor); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	doctor.ID = id

	updated, err := h.lab.UpdateDoctor(r.Context(), doctor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: updated})
}

func (h *LabHandler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "doctorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.lab.DeleteDoctor(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *LabHandler) OrderTest(w http.ResponseWriter, r *http.Request) {
	var test types.LabTest
	if err := json.NewDecoder(r.Body).Decode(&test); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.lab.OrderTest(r.Context(), test)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: created})
}

func (h *LabHandler) RecordTestResult(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "testID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req testResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	test, err := h.lab.RecordTestResult(r.Context(), id, req.Result)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: test})
}

func (h *LabHandler) DeleteTest(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "testID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.lab.DeleteTest(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *LabHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var expense types.Expense
	if err := json.NewDecoder(r.Body).Decode(&expense); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if expense.RecordedBy == "" {
		expense.RecordedBy = principalFromContext(r.Context()).UserID
	}

	created, err := h.lab.CreateExpense(r.Context(), expense)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: created})
}

func (h *LabHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, err := expenseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := h.lab.ListExpenses(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: expenses})
}

// ExportExpenses streams the expense report for the window as an XLSX
// workbook.
func (h *LabHandler) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, err := expenseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := h.lab.ListExpenses(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("expenses_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := reports.WriteExpenseWorkbook(w, expenses, from, to); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render workbook")
	}
}

func (h *LabHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "expenseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.lab.DeleteExpense(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
