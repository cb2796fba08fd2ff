package mysql

// -----------------------------------------------------------------------------
// SEED WRITES
// -----------------------------------------------------------------------------

const upsertOwnerSQL = `
INSERT INTO owners (id, name, avatar_url)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  name       = VALUES(name),
  avatar_url = VALUES(avatar_url)
`

const upsertTagSQL = `
INSERT INTO tags (id, kind, name)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  kind = VALUES(kind),
  name = VALUES(name)
`

const upsertAttributeKeySQL = `
INSERT INTO attribute_keys (id, code, value_type, options)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  code       = VALUES(code),
  value_type = VALUES(value_type),
  options    = VALUES(options)
`

const upsertListingSQL = `
INSERT INTO listings
  (id, owner_id, name, search_name, type, status, lat, lng, geohash,
   price_min, price_max, review_score, booking_count, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
ON DUPLICATE KEY UPDATE
  owner_id      = VALUES(owner_id),
  name          = VALUES(name),
  search_name   = VALUES(search_name),
  type          = VALUES(type),
  status        = VALUES(status),
  lat           = VALUES(lat),
  lng           = VALUES(lng),
  geohash       = VALUES(geohash),
  price_min     = VALUES(price_min),
  price_max     = VALUES(price_max),
  review_score  = VALUES(review_score),
  booking_count = VALUES(booking_count)
`

const deleteListingTagsSQL = `DELETE FROM listing_tags WHERE listing_id = ?`
const insertListingTagsPrefix = "INSERT INTO listing_tags (listing_id, tag_id) VALUES "

const deleteListingImagesSQL = `DELETE FROM listing_images WHERE listing_id = ?`
const insertListingImagesPrefix = "INSERT INTO listing_images (listing_id, position, url) VALUES "

const insertLikesPrefix = "INSERT IGNORE INTO listing_likes (user_id, listing_id) VALUES "

const upsertUnitSQL = `
INSERT INTO units (id, listing_id, name, capacity, base_price)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  listing_id = VALUES(listing_id),
  name       = VALUES(name),
  capacity   = VALUES(capacity),
  base_price = VALUES(base_price)
`

const deleteUnitAmenitiesSQL = `DELETE FROM unit_amenities WHERE unit_id = ?`
const insertUnitAmenitiesPrefix = "INSERT INTO unit_amenities (unit_id, tag_id) VALUES "

const deleteUnitAttributesSQL = `DELETE FROM unit_attributes WHERE unit_id = ?`
const insertUnitAttributesPrefix = "INSERT INTO unit_attributes (unit_id, attribute_key_id, text_value, num_value) VALUES "

const insertPricesPrefix = "INSERT INTO unit_prices (unit_id, day, price, discount_percent) VALUES "
const insertPricesOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  price            = VALUES(price),\n" +
	"  discount_percent = VALUES(discount_percent)\n"

const insertReservationsPrefix = "INSERT INTO reservations (id, unit_id, date_from, date_to, rooms, status) VALUES "
const insertReservationsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  unit_id   = VALUES(unit_id),\n" +
	"  date_from = VALUES(date_from),\n" +
	"  date_to   = VALUES(date_to),\n" +
	"  rooms     = VALUES(rooms),\n" +
	"  status    = VALUES(status)\n"

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const listingColumns = `
  l.id, l.owner_id, l.name, l.type, l.status, l.lat, l.lng, l.geohash,
  l.price_min, l.price_max, l.review_score, l.booking_count, l.created_at`

const getListingSQL = `SELECT` + listingColumns + `
FROM listings l
WHERE l.id = ?
`

const unitColumns = `u.id, u.listing_id, u.name, u.capacity, u.base_price`

const listAttributeKeysSQL = `
SELECT id, code, value_type, options
FROM attribute_keys
ORDER BY id
`

// Listings carrying tags, grouped so that ALL can be enforced with HAVING.
const listingTagsSelect = `
SELECT lt.listing_id
FROM listing_tags lt`

const unitAmenitiesSelect = `
SELECT u.listing_id
FROM unit_amenities am
JOIN units u ON u.id = am.unit_id`

const listingsNearSelect = `
SELECT l.id, l.lat, l.lng
FROM listings l`

const unitsSelect = `
SELECT u.id
FROM units u`

const unitCapacitySelect = `
SELECT u.id, u.capacity
FROM units u`

const unitBasePriceSelect = `
SELECT u.id, u.base_price
FROM units u`

// Confirmed windows overlapping [from, to).
const reservationsSelect = `
SELECT r.unit_id, r.date_from, r.date_to, r.rooms
FROM reservations r
JOIN units u ON u.id = r.unit_id`

const pricesSelect = `
SELECT p.unit_id, p.day, p.price, p.discount_percent
FROM unit_prices p
JOIN units u ON u.id = p.unit_id`

const listingsOfUnitsSelect = `
SELECT DISTINCT u.listing_id
FROM units u`

const ownersSelect = `
SELECT o.id, o.name, o.avatar_url
FROM owners o`

const imagesSelect = `
SELECT li.listing_id, li.url
FROM listing_images li`

const likesSelect = `
SELECT lk.listing_id
FROM listing_likes lk`
