package sqlinline

const QCountGenerationsSince = `--sql 387f29dc-2389-4f95-86ac-54a64006354b
select count(*)
from generations
where user_id = $1::text
  and type = $2::text
  and created_at >= $3::timestamptz;
`

const QInsertGeneration = `--sql 29473861-868a-4ef2-91a0-ef83244867f9
insert into generations (id, user_id, type, prompt, provider, status, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, 'pending', $6::timestamptz, $6::timestamptz)
returning
    id::text,
    user_id,
    type,
    prompt,
    provider,
    status,
    coalesce(result, ''),
    coalesce(error_message, ''),
    created_at,
    updated_at;
`

// QFinalizeGeneration moves a pending record to a terminal status. It matches
// nothing once the record has left pending.
const QFinalizeGeneration = `--sql c019913b-9d12-4a9d-93e9-0f585d09837c
update generations set
    status = $2::text,
    result = nullif($3::text, ''),
    error_message = nullif($4::text, ''),
    updated_at = now()
where id = $1::uuid
  and status = 'pending';
`

const QSelectGenerationByID = `--sql 2a39631b-bb46-4df2-a7bf-523ff30d3a81
select
    id::text,
    user_id,
    type,
    prompt,
    provider,
    status,
    coalesce(result, ''),
    coalesce(error_message, ''),
    created_at,
    updated_at
from generations
where id = $1::uuid
limit 1;
`

const QListGenerationsSince = `--sql b07856cc-73e8-433f-ac58-ad6cec73678c
select
    id::text,
    user_id,
    type,
    prompt,
    provider,
    status,
    coalesce(result, ''),
    coalesce(error_message, ''),
    created_at,
    updated_at
from generations
where user_id = $1::text
  and created_at >= $2::timestamptz
order by created_at desc;
`
