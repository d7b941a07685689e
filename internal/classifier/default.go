package classifier

import "github.com/dvloznov/swg-merchant/internal/domain"

var (
	sale     = domain.EventSale
	purchase = domain.EventPurchase
)

// weaponCategories is shared by the weapons vendor and the world drops vendor.
func weaponCategories(vendor, profession string) []Rule {
	return []Rule{
		{Applies: sale, Vendor: vendor, Items: []string{"carbine"}, Profession: profession, Category: "Carbine"},
		{Applies: sale, Vendor: vendor, Items: []string{"two-handed curved sword"}, Profession: profession, Category: "Two Hand"},
		{Applies: sale, Vendor: vendor, Items: []string{"curved sword"}, Profession: profession, Category: "One Hand"},
		{Applies: sale, Vendor: vendor, Items: []string{"rifle"}, Profession: profession, Category: "Rifle"},
		{Applies: sale, Vendor: vendor, Items: []string{"pistol", "dl44 xt"}, Profession: profession, Category: "Pistol"},
		{Applies: sale, Vendor: vendor, Items: []string{"long vibro axe", "nightsister energy lance"}, Profession: profession, Category: "Polearm"},
	}
}

// DefaultRules returns the built-in rule table. Order matters: more specific
// item rules for a vendor come before the vendor-only fallback.
func DefaultRules() []Rule {
	var rules []Rule

	rules = append(rules,
		Rule{Applies: sale, Vendor: "armor and vehicles", Items: []string{"ab-1", "eta-1", "flare s swoop", "xj-6", "basilisk war droid"}, Profession: "Artisan", Category: "Vehicle"},
		Rule{Applies: sale, Vendor: "armor and vehicles", Items: []string{"bone"}, Profession: "Armorsmith", Category: "Bone Armor"},
		Rule{Applies: sale, Vendor: "armor and vehicles", Items: []string{"composite"}, Profession: "Armorsmith", Category: "Composite"},
		Rule{Applies: sale, Vendor: "armor and vehicles", Items: []string{"psg", "personal shield"}, Profession: "Armorsmith", Category: "PSG"},
		Rule{Applies: sale, Vendor: "armor and vehicles", Items: []string{"r.i.s."}, Profession: "Armorsmith", Category: "RIS"},
		Rule{Applies: sale, Vendor: "armor and vehicles", Items: []string{"tantel"}, Profession: "Armorsmith", Category: "Tantel"},
		Rule{Applies: sale, Vendor: "armor and vehicles", Profession: "Armorsmith"},

		Rule{Applies: sale, Vendor: "buffbot", Profession: "Doctor", Category: "Buff"},
		Rule{Applies: sale, Vendor: "chef", Profession: "Chef", Category: "Chef"},

		Rule{Applies: sale, Vendor: "pets", Items: []string{"egg"}, Profession: "Bio-Engineer", Category: "Incubation"},
		Rule{Applies: sale, Vendor: "pets", Profession: "Bio-Engineer", Category: "Pet"},

		Rule{Applies: sale, Vendor: "pharmaceuticals", Items: []string{"active", "coagulant", "fear release", "scent", "tensile"}, Profession: "Bio-Engineer", Category: "BE Tissue"},
		Rule{Applies: sale, Vendor: "pharmaceuticals", Items: []string{"buff", "enhance"}, Profession: "Doctor", Category: "Buff Packs"},
		Rule{Applies: sale, Vendor: "pharmaceuticals", Items: []string{"small stimpack"}, Profession: "Doctor", Category: "Stimpack"},
		Rule{Applies: sale, Vendor: "pharmaceuticals", Items: []string{"hssiss"}, Profession: "Combat Medic", Category: "Dart"},
		Rule{Applies: sale, Vendor: "pharmaceuticals", Items: []string{"pet stimpack", "vitality"}, Profession: "Bio-Engineer", Category: "Stimpack"},

		Rule{Applies: sale, Vendor: "resources", Profession: "Artisan", Category: "Resources"},
	)

	rules = append(rules, weaponCategories("weapons", "Weaponsmith")[:4]...)
	rules = append(rules,
		Rule{Applies: sale, Vendor: "weapons", Items: []string{"vibro knuckler"}, Profession: "Weaponsmith", Category: "Unarmed"},
		Rule{Applies: sale, Vendor: "weapons", Items: []string{"flame thrower", "flamethrower", "launcher pistol"}, Profession: "Weaponsmith", Category: "Commando"},
	)
	rules = append(rules, weaponCategories("weapons", "Weaponsmith")[4:]...)
	rules = append(rules, Rule{Applies: sale, Vendor: "weapons", Profession: "Weaponsmith"})

	rules = append(rules,
		Rule{Applies: sale, Vendor: "world drops", Items: []string{"[ca]", "[aa]"}, Profession: "loot", Category: "Tapes"},
		Rule{Applies: sale, Vendor: "world drops", Items: []string{"crystal", "pearl"}, Profession: "loot", Category: "Crystal"},
		Rule{Applies: sale, Vendor: "world drops", Items: []string{"geonosian power", "venom"}, Profession: "loot", Category: "Component"},
		Rule{Applies: sale, Vendor: "world drops", Items: []string{"holocron"}, Profession: "loot", Category: "Misc"},
		Rule{Applies: sale, Vendor: "world drops", Items: []string{"nightsister clothing"}, Profession: "loot", Category: "Schematic"},
		Rule{Applies: sale, Vendor: "world drops", Items: []string{"schematic"}, Profession: "loot", Category: "Schematics"},
		Rule{Applies: sale, Vendor: "world drops", Items: []string{"treasure map"}, Profession: "loot", Category: "Treasure Map"},
	)
	rules = append(rules, weaponCategories("world drops", "loot")...)
	rules = append(rules, Rule{Applies: sale, Vendor: "world drops", Profession: "loot"})

	rules = append(rules,
		Rule{Applies: purchase, Items: []string{"geonosian power cube"}, Category: "Component"},
		Rule{Applies: purchase, Items: []string{"blood"}, Category: "Blood"},
		Rule{Applies: purchase, Items: []string{"aurilian plant"}, Category: "Aurilian"},
		Rule{Applies: purchase, Items: []string{"cpu>"}, Category: "Resources"},
	)

	return rules
}
