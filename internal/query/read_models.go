package query

import "github.com/example/petshop-checkout/internal/readmodel"

type OrderItemReadModel = readmodel.OrderItemReadModel
type OrderReadModel = readmodel.OrderReadModel
