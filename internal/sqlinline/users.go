package sqlinline

const QUpsertUser = `--sql bba924d4-8de5-4fca-902f-0a951ed1a7e9
insert into users (id, email, name, created_at, updated_at)
values ($1::text, $2::text, $3::text, now(), now())
on conflict (id) do update set
    email = coalesce(nullif(excluded.email, ''), users.email),
    name = coalesce(nullif(excluded.name, ''), users.name),
    updated_at = now()
returning id, email, name, created_at, updated_at;
`

const QSelectUserByID = `--sql 25964f58-3c5d-4389-8566-e0b8296a675f
select id, email, name, created_at, updated_at
from users
where id = $1::text
limit 1;
`
