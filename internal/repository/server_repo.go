package repository

import (
	"gorm.io/gorm"

	"vlessbot/internal/models"
)

// ServerRepository handles remote panel server records.
type ServerRepository struct {
	db *gorm.DB
}

func NewServerRepository(db *gorm.DB) *ServerRepository {
	return &ServerRepository{db: db}
}

// FindByID finds a server by its ID.
func (r *ServerRepository) FindByID(id string) (*models.Server, error) {
	var server models.Server
	if err := r.db.Where("id = ?", id).First(&server).Error; err != nil {
		return nil, err
	}
	return &server, nil
}

// FindActive returns all active servers.
func (r *ServerRepository) FindActive() ([]models.Server, error) {
	var servers []models.Server
	err := r.db.Where("active = ?", true).Find(&servers).Error
	return servers, err
}

// FindFirstActive returns the first active server, the trial placement policy.
func (r *ServerRepository) FindFirstActive() (*models.Server, error) {
	var server models.Server
	if err := r.db.Where("active = ?", true).Order("id").First(&server).Error; err != nil {
		return nil, err
	}
	return &server, nil
}

// FindByIDs returns the servers for the given IDs keyed by ID. Missing
// IDs are simply absent from the map.
func (r *ServerRepository) FindByIDs(ids []string) (map[string]models.Server, error) {
	var servers []models.Server
	if err := r.db.Where("id IN ?", ids).Find(&servers).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.Server, len(servers))
	for _, s := range servers {
		out[s.ID] = s
	}
	return out, nil
}

// Create inserts a new server.
func (r *ServerRepository) Create(server *models.Server) error {
	return r.db.Create(server).Error
}

// Update updates server fields.
func (r *ServerRepository) Update(id string, updates map[string]interface{}) error {
	return r.db.Model(&models.Server{}).Where("id = ?", id).Updates(updates).Error
}
