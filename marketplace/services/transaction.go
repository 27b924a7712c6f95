package services

import (
	"localfarmer/marketplace/auth"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

const transactionListLimit = 50

type TransactionService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *TransactionService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/", s.List)
	})

	return r
}

type transactionInfo struct {
	Id          uint      `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type listTransactionsResponse struct {
	utils.Status
	Transactions []transactionInfo `json:"transactions"`
}

func (s *TransactionService) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var transactions []schema.Transaction
	result := s.db.Where("user_id = ?", user.Id).Order("created_at DESC, id DESC").Limit(transactionListLimit).Find(&transactions)
	if result.Error != nil {
		writeError(w, dbError("sql error listing transactions", result.Error, "user_id", user.Id))
		return
	}

	res := make([]transactionInfo, 0, len(transactions))
	for _, t := range transactions {
		res = append(res, transactionInfo{Id: t.Id, Type: t.Type, Description: t.Description, Amount: t.Amount, CreatedAt: t.CreatedAt})
	}

	utils.WriteJsonResponse(w, http.StatusOK, listTransactionsResponse{Status: utils.Success(""), Transactions: res})
}
