package admin

import "time"

// Location maps to the location table.
type Location struct {
	ID          int64      `db:"location_id" json:"location_id"`
	UUID        string     `db:"uuid" json:"uuid"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description,omitempty"`
	Address1    string     `db:"address1" json:"address1,omitempty"`
	CityVillage string     `db:"city_village" json:"city_village,omitempty"`
	Country     string     `db:"country" json:"country,omitempty"`
	ParentUUID  string     `db:"parent_uuid" json:"parent_uuid,omitempty"`
	Retired     bool       `db:"retired" json:"retired"`
	DateCreated time.Time  `db:"date_created" json:"date_created"`
	DateChanged *time.Time `db:"date_changed" json:"date_changed,omitempty"`
}
