package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCatalogPriceSync = "catalog.price_sync"

const TaskCatalogReload = "catalog.reload"

type CatalogPriceSyncPayload struct {
	RequestedBy string `json:"requestedBy"`
}

type CatalogReloadPayload struct {
	RequestedBy string `json:"requestedBy"`
}

func NewCatalogPriceSyncTask(payload CatalogPriceSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogPriceSync, data), nil
}

func ParseCatalogPriceSyncPayload(task *asynq.Task) (CatalogPriceSyncPayload, error) {
	var payload CatalogPriceSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CatalogPriceSyncPayload{}, err
	}
	return payload, nil
}

func NewCatalogReloadTask(payload CatalogReloadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogReload, data), nil
}

func ParseCatalogReloadPayload(task *asynq.Task) (CatalogReloadPayload, error) {
	var payload CatalogReloadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CatalogReloadPayload{}, err
	}
	return payload, nil
}
