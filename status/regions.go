package status

// Oblasts is the canonical region order used by the positional
// by-oblast status string. Position i in the string describes Oblasts[i].
var Oblasts = [...]string{
	"Автономна Республіка Крим",
	"Волинська область",
	"Вінницька область",
	"Дніпропетровська область",
	"Донецька область",
	"Житомирська область",
	"Закарпатська область",
	"Запорізька область",
	"Івано-Франківська область",
	"м. Київ",
	"Київська область",
	"Кіровоградська область",
	"Луганська область",
	"Львівська область",
	"Миколаївська область",
	"Одеська область",
	"Полтавська область",
	"Рівненська область",
	"м. Севастополь",
	"Сумська область",
	"Тернопільська область",
	"Харківська область",
	"Херсонська область",
	"Хмельницька область",
	"Черкаська область",
	"Чернівецька область",
	"Чернігівська область",
}

// RegionCount is the number of regions in the canonical order
const RegionCount = len(Oblasts)
