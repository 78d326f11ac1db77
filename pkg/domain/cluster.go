package domain

// UnderservedCell ячейка, не проходящая пороги доступности, с приоритетом
type UnderservedCell struct {
	Record   AccessibilityRecord `json:"record"`
	Priority float64             `json:"priority"`
}

// UnderservedCluster связная группа недообслуженных ячеек
type UnderservedCluster struct {
	Members         []DemandCell `json:"members"`
	Centroid        Coordinates  `json:"centroid"`
	TotalPopulation int64        `json:"total_population"`
	Priority        float64      `json:"priority"`
}
