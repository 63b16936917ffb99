package service

import (
	"go.mongodb.org/mongo-driver/mongo"
)

type LabService struct {
	MongodbClient *mongo.Client
	DefaultDB     string
	Reporters     []Reporter
}

func NewLabService(mongodbClient *mongo.Client, defaultDB string, reporters ...Reporter) *LabService {
	return &LabService{
		MongodbClient: mongodbClient,
		DefaultDB:     defaultDB,
		Reporters:     reporters,
	}
}

// Database returns name, or the default database when name is empty.
func (svc *LabService) Database(name string) *mongo.Database {
	if name == "" {
		name = svc.DefaultDB
	}
	return svc.MongodbClient.Database(name)
}
